// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package github

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2"

	"github.com/walteh/tracksync/pkg/cache"
	"github.com/walteh/tracksync/pkg/codec"
	"github.com/walteh/tracksync/pkg/pathpolicy"
	"github.com/walteh/tracksync/pkg/provider"
	"github.com/walteh/tracksync/pkg/structure"
	"github.com/walteh/tracksync/pkg/syncerr"
)

const (
	Name = "github"

	// OptionRepo is the "owner/name" of the repository holding activities.
	OptionRepo = "repo"
	// OptionBranch defaults to "main".
	OptionBranch = "branch"
	// OptionAPIURL points at a GitHub Enterprise (or test) API.
	OptionAPIURL = "api_url"
)

func init() {
	provider.Register(Name, func(ctx context.Context, store cache.Store) (provider.Port, error) {
		return New(store), nil
	})
}

// 🎯 Port keeps activities in a GitHub repository. There is no conditional
// directory listing; instead the branch head commit acts as the hash of the
// whole tree, and the tree is fetched again only when it moves.
type Port struct {
	store cache.Store
}

var _ provider.Port = (*Port)(nil)

// 🏭 New creates a new GitHub port
func New(store cache.Store) *Port {
	return &Port{store: store}
}

// Client is the authenticated handle for one repository.
type Client struct {
	gh     *github.Client
	owner  string
	repo   string
	branch string
}

func (p *Port) Name() string { return Name }

func (p *Port) MaxPathLen() int { return pathpolicy.DefaultMaxPathLen }

func (p *Port) CacheStore() cache.Store { return p.store }

func (p *Port) SyncRoot(acct *provider.Account) string {
	return acct.Config.WithDefaults().SyncRoot
}

// 🔍 parseRepo splits "owner/name", tolerating a github.com URL prefix
func parseRepo(repo string) (owner, name string, err error) {
	repo = strings.TrimSuffix(strings.TrimSpace(repo), ".git")
	repo = strings.TrimPrefix(repo, "https://")
	repo = strings.TrimPrefix(repo, "github.com/")
	parts := strings.Split(strings.Trim(repo, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.Errorf("invalid repository %q, want owner/name", repo)
	}
	return parts[0], parts[1], nil
}

func (p *Port) Client(ctx context.Context, acct *provider.Account) (provider.Client, error) {
	token := acct.Token
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}
	if token == "" {
		return nil, syncerr.New(syncerr.AuthRequired, "no token for github account %s", acct.ExternalID)
	}

	owner, name, err := parseRepo(acct.Option(OptionRepo, ""))
	if err != nil {
		return nil, errors.Errorf("parsing repo: %w", err)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	gh := github.NewClient(oauth2.NewClient(ctx, ts))

	if api := acct.Option(OptionAPIURL, ""); api != "" {
		u, err := url.Parse(strings.TrimSuffix(api, "/") + "/")
		if err != nil {
			return nil, errors.Errorf("parsing api url: %w", err)
		}
		gh.BaseURL = u
	}

	zerolog.Ctx(ctx).Debug().Str("owner", owner).Str("repo", name).Msg("created github client")

	return &Client{
		gh:     gh,
		owner:  owner,
		repo:   name,
		branch: acct.Option(OptionBranch, "main"),
	}, nil
}

func asClient(client provider.Client) (*Client, error) {
	c, ok := client.(*Client)
	if !ok {
		return nil, errors.Errorf("github: unexpected client %T", client)
	}
	return c, nil
}

// repoPath turns an absolute storage path into a repository path.
func repoPath(full string) string {
	return strings.TrimPrefix(path.Clean("/"+full), "/")
}

func (p *Port) Enumerate(ctx context.Context, acct *provider.Account, client provider.Client, root string, s *cache.Structure) iter.Seq2[provider.File, error] {
	return func(yield func(provider.File, error) bool) {
		c, err := asClient(client)
		if err != nil {
			yield(provider.File{}, err)
			return
		}

		if err := p.refresh(ctx, c, s); err != nil {
			yield(provider.File{}, err)
			return
		}

		// the caller may Move files while ranging, which rewrites s
		root = path.Clean("/" + root)
		for _, f := range structure.Files(s, root) {
			if !codec.IsActivityFile(f.Path) {
				continue
			}
			file := provider.File{
				FullPath:  f.Path,
				RelPath:   provider.RelativePath(root, f.Path),
				StorageID: f.Rev,
				Rev:       f.Rev,
			}
			if !yield(file, nil) {
				return
			}
		}
	}
}

// refresh rebuilds the structure from the recursive tree of the branch head,
// unless the head is the commit the structure was built from.
func (p *Port) refresh(ctx context.Context, c *Client, s *cache.Structure) error {
	logger := zerolog.Ctx(ctx)

	ref, _, err := c.gh.Git.GetRef(ctx, c.owner, c.repo, "heads/"+c.branch)
	if err != nil {
		if isEmptyRepo(err) {
			logger.Debug().Str("branch", c.branch).Msg("branch not found, treating repository as empty")
			s.Replace(nil)
			return nil
		}
		return classify(err, "getting branch head")
	}

	head := ref.GetObject().GetSHA()
	if rec := s.Lookup("/"); rec != nil && rec.Hash == head {
		logger.Debug().Str("head", head).Msg("branch head unchanged")
		return nil
	}

	tree, _, err := c.gh.Git.GetTree(ctx, c.owner, c.repo, head, true)
	if err != nil {
		return classify(err, "getting repository tree")
	}
	if tree.GetTruncated() {
		logger.Warn().Str("head", head).Msg("repository tree truncated, some activities will be missed")
	}

	dirs := map[string]*cache.Directory{"/": {Path: "/", Hash: head}}
	ensure := func(p string) *cache.Directory {
		if d, ok := dirs[p]; ok {
			return d
		}
		d := &cache.Directory{Path: p}
		dirs[p] = d
		return d
	}

	for _, entry := range tree.Entries {
		full := "/" + entry.GetPath()
		switch entry.GetType() {
		case "tree":
			ensure(full)
		case "blob":
			if !codec.IsActivityFile(full) {
				continue
			}
			d := ensure(path.Dir(full))
			d.Files = append(d.Files, cache.FileRev{Path: full, Rev: entry.GetSHA()})
		}
	}

	records := make([]*cache.Directory, 0, len(dirs))
	for _, d := range dirs {
		records = append(records, d)
	}
	s.Replace(records)

	logger.Debug().Str("head", head).Int("dirs", len(records)).Msg("rebuilt structure from tree")
	return nil
}

func (p *Port) Read(ctx context.Context, acct *provider.Account, client provider.Client, file provider.File, s *cache.Structure) ([]byte, string, error) {
	c, err := asClient(client)
	if err != nil {
		return nil, "", err
	}

	sha := file.StorageID
	if sha == "" {
		sha, err = p.blobSHA(ctx, c, file.FullPath, s)
		if err != nil {
			return nil, "", err
		}
	}

	data, _, err := c.gh.Git.GetBlobRaw(ctx, c.owner, c.repo, sha)
	if err != nil {
		return nil, "", classify(err, "reading "+file.FullPath)
	}

	return data, sha, nil
}

// blobSHA looks the blob up in the structure first, then asks the contents API.
func (p *Port) blobSHA(ctx context.Context, c *Client, full string, s *cache.Structure) (string, error) {
	if s != nil {
		if dir := s.Lookup(path.Dir(full)); dir != nil {
			for _, f := range dir.Files {
				if f.Path == full {
					return f.Rev, nil
				}
			}
		}
	}

	content, _, _, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, repoPath(full), &github.RepositoryContentGetOptions{
		Ref: c.branch,
	})
	if err != nil {
		return "", classify(err, "looking up "+full)
	}
	if content == nil {
		return "", syncerr.New(syncerr.NotFound, "%s is a directory", full)
	}
	return content.GetSHA(), nil
}

func (p *Port) Write(ctx context.Context, acct *provider.Account, client provider.Client, fullPath string, data []byte, s *cache.Structure) (string, error) {
	c, err := asClient(client)
	if err != nil {
		return "", err
	}

	full := path.Clean("/" + fullPath)
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(fmt.Sprintf("tracksync: add %s", path.Base(full))),
		Content: data,
		Branch:  github.String(c.branch),
	}

	var sha string
	if existing, err := p.blobSHA(ctx, c, full, s); err == nil {
		sha = existing
	} else if !syncerr.Is(err, syncerr.NotFound) {
		return "", err
	}

	var resp *github.RepositoryContentResponse
	if sha == "" {
		resp, _, err = c.gh.Repositories.CreateFile(ctx, c.owner, c.repo, repoPath(full), opts)
	} else {
		opts.SHA = github.String(sha)
		opts.Message = github.String(fmt.Sprintf("tracksync: update %s", path.Base(full)))
		resp, _, err = c.gh.Repositories.UpdateFile(ctx, c.owner, c.repo, repoPath(full), opts)
	}
	if err != nil {
		return "", classify(err, "writing "+full)
	}

	rev := resp.GetContent().GetSHA()
	if s != nil && codec.IsActivityFile(full) {
		s.SetFileRev(path.Dir(full), full, rev)
	}

	zerolog.Ctx(ctx).Debug().Str("path", full).Str("sha", rev).Msg("committed activity file")

	return rev, nil
}

// Move copies the blob to destPath and deletes the original; the contents
// API has no rename.
func (p *Port) Move(ctx context.Context, acct *provider.Account, client provider.Client, fullPath, destPath string, s *cache.Structure) error {
	c, err := asClient(client)
	if err != nil {
		return err
	}

	from, to := path.Clean("/"+fullPath), path.Clean("/"+destPath)

	sha, err := p.blobSHA(ctx, c, from, s)
	if err != nil {
		return err
	}

	data, _, err := c.gh.Git.GetBlobRaw(ctx, c.owner, c.repo, sha)
	if err != nil {
		return classify(err, "reading "+from)
	}

	if _, err := p.Write(ctx, acct, client, to, data, s); err != nil {
		return err
	}

	_, _, err = c.gh.Repositories.DeleteFile(ctx, c.owner, c.repo, repoPath(from), &github.RepositoryContentFileOptions{
		Message: github.String(fmt.Sprintf("tracksync: move %s to %s", path.Base(from), path.Base(to))),
		SHA:     github.String(sha),
		Branch:  github.String(c.branch),
	})
	if err != nil {
		return classify(err, "deleting "+from)
	}

	if s != nil {
		s.RemoveFile(path.Dir(from), from)
	}
	return nil
}

// isEmptyRepo reports a missing branch; empty repositories answer 409.
func isEmptyRepo(err error) bool {
	var respErr *github.ErrorResponse
	if !errors.As(err, &respErr) || respErr.Response == nil {
		return false
	}
	return respErr.Response.StatusCode == http.StatusNotFound || respErr.Response.StatusCode == http.StatusConflict
}

// classify maps go-github failures onto syncerr kinds.
func classify(err error, what string) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	var respErr *github.ErrorResponse

	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return syncerr.Wrap(syncerr.Transport, err, "%s: rate limited", what)
	case errors.As(err, &respErr) && respErr.Response != nil:
		status := respErr.Response.StatusCode
		if status == http.StatusForbidden && strings.Contains(strings.ToLower(respErr.Message), "quota") {
			return syncerr.Wrap(syncerr.QuotaExceeded, err, "%s", what)
		}
		kind := syncerr.FromStatus(status)
		if kind == syncerr.Unknown && status == http.StatusForbidden {
			kind = syncerr.AuthRequired
		}
		return syncerr.Wrap(kind, err, "%s", what)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return syncerr.Wrap(syncerr.Transport, err, "%s", what)
	}
}
