package storagesync

import (
	"context"
	"fmt"
	"iter"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/walteh/tracksync/pkg/activity"
	"github.com/walteh/tracksync/pkg/cache"
	"github.com/walteh/tracksync/pkg/cache/store"
	"github.com/walteh/tracksync/pkg/codec"
	"github.com/walteh/tracksync/pkg/pathpolicy"
	"github.com/walteh/tracksync/pkg/provider"
	"github.com/walteh/tracksync/pkg/syncerr"

	_ "github.com/walteh/tracksync/pkg/codec/gpx"
	_ "github.com/walteh/tracksync/pkg/codec/tcx"
)

type fakeFile struct {
	data []byte
	rev  string
}

// fakePort is an in-memory provider with caller controlled revisions.
type fakePort struct {
	mu    sync.Mutex
	files map[string]*fakeFile
	store cache.Store
	n     int

	reads  []string
	moves  [][2]string
	writes []string

	enumErr error
	readErr map[string]error
}

var _ provider.Port = (*fakePort)(nil)

func newFakePort() *fakePort {
	return &fakePort{
		files:   map[string]*fakeFile{},
		store:   cache.NewStore(store.NewMemory()),
		readErr: map[string]error{},
	}
}

func (f *fakePort) put(p string, data []byte, rev string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[p] = &fakeFile{data: data, rev: rev}
}

func (f *fakePort) Name() string    { return "fake" }
func (f *fakePort) MaxPathLen() int { return pathpolicy.DefaultMaxPathLen }

func (f *fakePort) Client(ctx context.Context, acct *provider.Account) (provider.Client, error) {
	if acct.Token == "revoked" {
		return nil, syncerr.New(syncerr.AuthRequired, "token revoked")
	}
	return f, nil
}

func (f *fakePort) SyncRoot(acct *provider.Account) string {
	if !acct.FullAccess {
		return "/"
	}
	return acct.Config.WithDefaults().SyncRoot
}

func (f *fakePort) sandbox(acct *provider.Account) string {
	if acct.FullAccess {
		return ""
	}
	return "/Apps/" + acct.Option("app", "tap")
}

func (f *fakePort) Enumerate(ctx context.Context, acct *provider.Account, client provider.Client, root string, s *cache.Structure) iter.Seq2[provider.File, error] {
	return func(yield func(provider.File, error) bool) {
		if f.enumErr != nil {
			yield(provider.File{}, f.enumErr)
			return
		}

		f.mu.Lock()
		base := f.sandbox(acct) + strings.TrimSuffix(root, "/")
		var paths []string
		for p := range f.files {
			if strings.HasPrefix(p, base+"/") && codec.IsActivityFile(p) {
				paths = append(paths, p)
			}
		}
		sort.Strings(paths)
		files := make([]provider.File, 0, len(paths))
		for _, p := range paths {
			files = append(files, provider.File{FullPath: p, RelPath: strings.TrimPrefix(p, base), StorageID: p, Rev: f.files[p].rev})
			s.SetFileRev(path.Dir(p), p, f.files[p].rev)
		}
		f.mu.Unlock()

		for _, file := range files {
			if !yield(file, nil) {
				return
			}
		}
	}
}

func (f *fakePort) Read(ctx context.Context, acct *provider.Account, client provider.Client, file provider.File, s *cache.Structure) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, file.FullPath)
	if err := f.readErr[file.FullPath]; err != nil {
		return nil, "", err
	}
	ff, ok := f.files[file.FullPath]
	if !ok {
		return nil, "", syncerr.New(syncerr.NotFound, "%s", file.FullPath)
	}
	return ff.data, ff.rev, nil
}

func (f *fakePort) Write(ctx context.Context, acct *provider.Account, client provider.Client, fullPath string, data []byte, s *cache.Structure) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	rev := fmt.Sprintf("w%d", f.n)
	full := f.sandbox(acct) + fullPath
	f.files[full] = &fakeFile{data: data, rev: rev}
	f.writes = append(f.writes, full)
	return rev, nil
}

func (f *fakePort) Move(ctx context.Context, acct *provider.Account, client provider.Client, fullPath, destPath string, s *cache.Structure) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, [2]string{fullPath, destPath})
	ff, ok := f.files[fullPath]
	if !ok {
		return syncerr.New(syncerr.NotFound, "%s", fullPath)
	}
	delete(f.files, fullPath)
	f.files[destPath] = ff
	return nil
}

func (f *fakePort) CacheStore() cache.Store { return f.store }

// countingCodec counts parse calls on top of the registered codecs.
type countingCodec struct {
	codec.ActivityCodec
	parses int
}

func (c *countingCodec) Parse(ctx context.Context, data []byte, format codec.Format) (*activity.Activity, error) {
	c.parses++
	return c.ActivityCodec.Parse(ctx, data, format)
}

// tcxDoc renders a TCX file with points one-second trackpoints.
func tcxDoc(start time.Time, sport string, points int, author string) []byte {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<TrainingCenterDatabase xmlns="http://www.garmin.com/xmlschemas/TrainingCenterDatabase/v2"><Activities>`)
	fmt.Fprintf(&b, `<Activity Sport=%q><Id>%s</Id>`, sport, start.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, `<Lap StartTime=%q><TotalTimeSeconds>%d</TotalTimeSeconds><Track>`, start.UTC().Format(time.RFC3339), points)
	for i := 0; i < points; i++ {
		fmt.Fprintf(&b, `<Trackpoint><Time>%s</Time><Position><LatitudeDegrees>%f</LatitudeDegrees><LongitudeDegrees>%f</LongitudeDegrees></Position></Trackpoint>`,
			start.Add(time.Duration(i)*time.Second).UTC().Format(time.RFC3339), 40.0+float64(i)/1000, -74.0)
	}
	b.WriteString(`</Track></Lap></Activity></Activities>`)
	if author != "" {
		fmt.Fprintf(&b, `<Author><Name>%s</Name></Author>`, author)
	}
	b.WriteString(`</TrainingCenterDatabase>`)
	return []byte(b.String())
}
