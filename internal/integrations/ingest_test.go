package integrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blarApp/blargraph/internal/graphmodel"
)

func testEnv() graphmodel.Environment {
	return graphmodel.Environment{EntityID: "e1", RepoID: "r1", RootPath: "/repo", EnvironmentTag: "main"}
}

func TestIndexFilesByRepoRelativePath(t *testing.T) {
	graph := graphmodel.NewGraph()
	env := testEnv()
	fileNode := graphmodel.NewNode(env, graphmodel.KindFile, "/repo/pkg/foo.go", "/repo/pkg/foo.go", 1, 10)
	graph.AddNode(fileNode)

	index := indexFilesByRepoRelativePath(graph, env.RootPath)
	require.Contains(t, index, "pkg/foo.go")
	assert.Equal(t, fileNode.ID, index["pkg/foo.go"].ID)
}

func TestIngesterRunWiresNodesAndEdges(t *testing.T) {
	graph := graphmodel.NewGraph()
	env := testEnv()
	fileNode := graphmodel.NewNode(env, graphmodel.KindFile, "/repo/pkg/foo.go", "/repo/pkg/foo.go", 1, 10)
	graph.AddNode(fileNode)

	in := &Ingester{env: env}

	commit := CommitInfo{SHA: "abc123", Message: "fix bug", Author: "alice", Timestamp: "2026-01-01T00:00:00Z", Files: []string{"pkg/foo.go"}}
	commitNode := in.commitNode(commit)
	graph.AddNode(commitNode)
	modified := in.linkModifiedFiles(graph, commitNode, commit.Files, indexFilesByRepoRelativePath(graph, env.RootPath))
	assert.Equal(t, 1, modified)

	var found bool
	for _, e := range graph.Edges() {
		if e.Kind == graphmodel.EdgeModifiedBy && e.FromID == fileNode.ID && e.ToID == commitNode.ID {
			found = true
		}
	}
	assert.True(t, found, "expected MODIFIED_BY edge from file node to commit node")
}

func TestLinkModifiedFilesSkipsUnknownPaths(t *testing.T) {
	graph := graphmodel.NewGraph()
	env := testEnv()
	in := &Ingester{env: env}

	node := in.commitNode(CommitInfo{SHA: "deadbeef"})
	graph.AddNode(node)

	count := in.linkModifiedFiles(graph, node, []string{"does/not/exist.go"}, map[string]*graphmodel.Node{})
	assert.Equal(t, 0, count)
	assert.Empty(t, graph.Edges())
}

func TestPullRequestNodeProperties(t *testing.T) {
	in := &Ingester{env: testEnv()}
	pr := PullRequestInfo{Number: 42, Title: "Add feature", Author: "bob", State: "closed", MergedAt: "2026-02-01T00:00:00Z", MergeSHA: "feedface"}
	node := in.pullRequestNode(pr)

	assert.Equal(t, graphmodel.KindIntegration, node.Kind)
	assert.Equal(t, graphmodel.LayerIntegrations, node.Layer)
	assert.Equal(t, "pull_request", node.Properties["integration_type"])
	assert.Equal(t, 42, node.Properties["number"])
}
