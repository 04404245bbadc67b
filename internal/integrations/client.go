// Package integrations populates the Integration layer (spec §3.1/§3.2):
// one node per pull request or commit, a MODIFIED_BY edge from each code
// node the change touched back to that Integration node, and an
// INTEGRATION_SEQUENCE edge chaining Integration nodes in commit order.
//
// spec.md names the Integration node kind and its two edge kinds without
// specifying a producer for them; this package is that producer, grounded
// on the teacher's internal/github package and, for the wider PR/commit
// ingestion surface it mirrors, blarify/examples/graph_builder.py in
// original_source/.
package integrations

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
	"golang.org/x/time/rate"

	"github.com/blarApp/blargraph/internal/errors"
	"github.com/blarApp/blargraph/internal/logging"
)

// Client wraps the GitHub API with the rate limiting the teacher's
// internal/github/client.go applies to every call.
type Client struct {
	gh          *github.Client
	rateLimiter *rate.Limiter
}

// NewClient builds a Client authenticated with token, allowing at most
// requestsPerSecond calls/sec against the GitHub API.
func NewClient(token string, requestsPerSecond int) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	return &Client{
		gh:          github.NewClient(nil).WithAuthToken(token),
		rateLimiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

// CommitInfo is the subset of a GitHub commit this package needs: enough to
// build an Integration node and discover which files it touched.
type CommitInfo struct {
	SHA       string
	Message   string
	Author    string
	Timestamp string
	Files     []string
}

// PullRequestInfo is the subset of a GitHub pull request this package needs.
type PullRequestInfo struct {
	Number    int
	Title     string
	Author    string
	State     string
	MergedAt  string
	MergeSHA  string
	Files     []string
}

// FetchCommits retrieves every commit on the repository's default branch,
// each with the list of file paths it modified.
func (c *Client) FetchCommits(ctx context.Context, owner, name string) ([]CommitInfo, error) {
	opts := &github.CommitsListOptions{ListOptions: github.ListOptions{PerPage: 100}}
	var out []CommitInfo

	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, errors.NetworkError(err, "rate limiter wait")
		}
		commits, resp, err := c.gh.Repositories.ListCommits(ctx, owner, name, opts)
		if err != nil {
			return nil, errors.NetworkError(err, "list commits")
		}
		for _, commit := range commits {
			info := CommitInfo{
				SHA:     commit.GetSHA(),
				Message: commit.GetCommit().GetMessage(),
				Author:  commit.GetCommit().GetAuthor().GetName(),
			}
			if date := commit.GetCommit().GetAuthor().GetDate(); !date.IsZero() {
				info.Timestamp = date.Format("2006-01-02T15:04:05Z")
			}
			files, err := c.fetchCommitFiles(ctx, owner, name, info.SHA)
			if err != nil {
				logging.Warn("integrations: commit file list failed", "sha", info.SHA, "error", err)
			} else {
				info.Files = files
			}
			out = append(out, info)
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *Client) fetchCommitFiles(ctx context.Context, owner, name, sha string) ([]string, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, errors.NetworkError(err, "rate limiter wait")
	}
	commit, _, err := c.gh.Repositories.GetCommit(ctx, owner, name, sha, nil)
	if err != nil {
		return nil, errors.NetworkError(err, "get commit")
	}
	files := make([]string, 0, len(commit.Files))
	for _, f := range commit.Files {
		files = append(files, f.GetFilename())
	}
	return files, nil
}

// FetchPullRequests retrieves every pull request (any state) with the list
// of file paths it touched.
func (c *Client) FetchPullRequests(ctx context.Context, owner, name string) ([]PullRequestInfo, error) {
	opts := &github.PullRequestListOptions{State: "all", ListOptions: github.ListOptions{PerPage: 100}}
	var out []PullRequestInfo

	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, errors.NetworkError(err, "rate limiter wait")
		}
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, name, opts)
		if err != nil {
			return nil, errors.NetworkError(err, "list pull requests")
		}
		for _, pr := range prs {
			info := PullRequestInfo{
				Number: pr.GetNumber(),
				Title:  pr.GetTitle(),
				Author: pr.GetUser().GetLogin(),
				State:  pr.GetState(),
			}
			if pr.MergedAt != nil {
				info.MergedAt = pr.GetMergedAt().Format("2006-01-02T15:04:05Z")
				info.MergeSHA = pr.GetMergeCommitSHA()
			}
			files, err := c.fetchPRFiles(ctx, owner, name, pr.GetNumber())
			if err != nil {
				logging.Warn("integrations: PR file list failed", "number", info.Number, "error", err)
			} else {
				info.Files = files
			}
			out = append(out, info)
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (c *Client) fetchPRFiles(ctx context.Context, owner, name string, number int) ([]string, error) {
	var out []string
	opts := &github.ListOptions{PerPage: 100}
	for {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, errors.NetworkError(err, "rate limiter wait")
		}
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, name, number, opts)
		if err != nil {
			return nil, errors.NetworkError(err, fmt.Sprintf("list files for PR #%d", number))
		}
		for _, f := range files {
			out = append(out, f.GetFilename())
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}
