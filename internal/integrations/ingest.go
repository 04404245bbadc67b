package integrations

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/blarApp/blargraph/internal/graphmodel"
	"github.com/blarApp/blargraph/internal/logging"
)

// Ingester writes Integration nodes and their MODIFIED_BY/INTEGRATION_SEQUENCE
// edges into a graph already populated by the Hierarchy Builder, so that
// file-path lookups against existing File nodes succeed.
type Ingester struct {
	client *Client
	env    graphmodel.Environment
}

// New constructs an Ingester bound to one ingest environment.
func New(client *Client, env graphmodel.Environment) *Ingester {
	return &Ingester{client: client, env: env}
}

// Result reports what one Run added.
type Result struct {
	IntegrationNodes int
	ModifiedByEdges  int
	SequenceEdges    int
}

// Run fetches commits and pull requests for owner/name and wires them into
// graph: one Integration node per commit and per merged pull request, a
// MODIFIED_BY edge from every touched File node to its Integration node, and
// an INTEGRATION_SEQUENCE chain ordering Integration nodes by timestamp.
func (in *Ingester) Run(ctx context.Context, graph *graphmodel.Graph, owner, name string) (*Result, error) {
	result := &Result{}
	fileIndex := indexFilesByRepoRelativePath(graph, in.env.RootPath)

	commits, err := in.client.FetchCommits(ctx, owner, name)
	if err != nil {
		return result, err
	}
	prs, err := in.client.FetchPullRequests(ctx, owner, name)
	if err != nil {
		return result, err
	}

	type timestamped struct {
		node *graphmodel.Node
		at   string
	}
	var chain []timestamped

	for _, commit := range commits {
		node := in.commitNode(commit)
		graph.AddNode(node)
		result.IntegrationNodes++
		result.ModifiedByEdges += in.linkModifiedFiles(graph, node, commit.Files, fileIndex)
		chain = append(chain, timestamped{node: node, at: commit.Timestamp})
	}

	for _, pr := range prs {
		if pr.State != "closed" || pr.MergedAt == "" {
			// Only merged PRs represent an actual code change; open/closed-
			// unmerged PRs have no MODIFIED_BY target.
			continue
		}
		node := in.pullRequestNode(pr)
		graph.AddNode(node)
		result.IntegrationNodes++
		result.ModifiedByEdges += in.linkModifiedFiles(graph, node, pr.Files, fileIndex)
		chain = append(chain, timestamped{node: node, at: pr.MergedAt})
	}

	sort.SliceStable(chain, func(i, j int) bool { return chain[i].at < chain[j].at })
	for i := 1; i < len(chain); i++ {
		graph.AddEdge(&graphmodel.Edge{
			FromID:    chain[i-1].node.ID,
			ToID:      chain[i].node.ID,
			Kind:      graphmodel.EdgeIntegrationSequence,
			StepOrder: i,
		})
		result.SequenceEdges++
	}

	logging.Info("integrations: ingest complete",
		"nodes", result.IntegrationNodes, "modified_by", result.ModifiedByEdges, "sequence", result.SequenceEdges)
	return result, nil
}

func (in *Ingester) commitNode(commit CommitInfo) *graphmodel.Node {
	identifier := "commit:" + commit.SHA
	n := graphmodel.NewNode(in.env, graphmodel.KindIntegration, identifier, identifier, 0, 0)
	n.Name = commit.SHA
	n.Layer = graphmodel.LayerIntegrations
	n.Properties = map[string]any{
		"integration_type": "commit",
		"sha":               commit.SHA,
		"message":           commit.Message,
		"author":            commit.Author,
		"timestamp":         commit.Timestamp,
	}
	return n
}

func (in *Ingester) pullRequestNode(pr PullRequestInfo) *graphmodel.Node {
	identifier := "pr:" + strconv.Itoa(pr.Number)
	n := graphmodel.NewNode(in.env, graphmodel.KindIntegration, identifier, identifier, 0, 0)
	n.Name = pr.Title
	n.Layer = graphmodel.LayerIntegrations
	n.Properties = map[string]any{
		"integration_type": "pull_request",
		"number":            pr.Number,
		"title":             pr.Title,
		"author":            pr.Author,
		"state":             pr.State,
		"merged_at":         pr.MergedAt,
		"merge_sha":         pr.MergeSHA,
	}
	return n
}

// linkModifiedFiles emits a MODIFIED_BY edge from each File node whose
// repo-relative path matches one of paths to integrationNode. Files the
// Hierarchy Builder never created a node for (deleted, or outside the
// languages it parses) are skipped rather than erroring, since the
// Integration node itself is still valid evidence even when some of its
// files aren't in the graph.
func (in *Ingester) linkModifiedFiles(graph *graphmodel.Graph, integrationNode *graphmodel.Node, paths []string, fileIndex map[string]*graphmodel.Node) int {
	count := 0
	for _, p := range paths {
		fileNode, ok := fileIndex[filepath.ToSlash(p)]
		if !ok {
			continue
		}
		graph.AddEdge(&graphmodel.Edge{
			FromID: fileNode.ID,
			ToID:   integrationNode.ID,
			Kind:   graphmodel.EdgeModifiedBy,
		})
		count++
	}
	return count
}

// indexFilesByRepoRelativePath maps every File node's path, relative to
// root, back to the node, so GitHub's repo-relative file paths can be
// resolved against the graph's absolute ones.
func indexFilesByRepoRelativePath(graph *graphmodel.Graph, root string) map[string]*graphmodel.Node {
	index := make(map[string]*graphmodel.Node)
	for _, n := range graph.Nodes() {
		if n.Kind != graphmodel.KindFile {
			continue
		}
		rel, err := filepath.Rel(root, n.Path)
		if err != nil {
			continue
		}
		index[filepath.ToSlash(rel)] = n
	}
	return index
}

