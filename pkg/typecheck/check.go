package typecheck

import (
	"context"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/gts-typecheck/pkg/syntax"
)

// Options tunes resolution. The zero value reproduces the strict behaviour:
// wildcard imports are opaque and nothing is implicitly visible.
type Options struct {
	// ImplicitImports are added to every manifest as if imported, e.g.
	// "java.lang.String".
	ImplicitImports []string
	// TrustOnDemandImports accepts any reference in a compilation unit that
	// has a wildcard import.
	TrustOnDemandImports bool
	// Workers bounds concurrent resolver runs; <= 0 means GOMAXPROCS.
	Workers int
}

// Check collects manifests from root and resolves each of them, merging the
// results into one report.
func Check(ctx context.Context, root *syntax.Node, opts Options) (*Report, error) {
	manifests := Collect(root)
	return CheckManifests(ctx, manifests, opts)
}

// CheckManifests resolves already collected manifests. Manifests share no
// state, so runs proceed in parallel and are merged once all finish.
func CheckManifests(ctx context.Context, manifests []Manifest, opts Options) (*Report, error) {
	report := NewReport()
	if len(manifests) == 0 {
		return report, ctx.Err()
	}

	results := make([]*Report, len(manifests))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workerCount(opts.Workers, len(manifests)))
	for i := range manifests {
		if groupCtx.Err() != nil {
			break
		}
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			results[i] = Resolve(withImplicitImports(manifests[i], opts.ImplicitImports), opts)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, result := range results {
		report.Merge(result)
	}
	return report, nil
}

func withImplicitImports(m Manifest, implicit []string) Manifest {
	if len(implicit) == 0 {
		return m
	}
	declared := make(map[string]Origin, len(m.DeclaredTypes)+len(implicit))
	for name, origin := range m.DeclaredTypes {
		declared[name] = origin
	}
	imports := append([]Import(nil), m.Imports...)
	for _, name := range implicit {
		if name == "" {
			continue
		}
		if _, exists := declared[name]; !exists {
			declared[name] = OriginImport
		}
		imports = append(imports, Import{Name: name, OnDemand: strings.HasSuffix(name, ".*")})
	}
	m.DeclaredTypes = declared
	m.Imports = imports
	return m
}

func workerCount(requested, tasks int) int {
	workers := requested
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}
	if workers > tasks {
		workers = tasks
	}
	return workers
}
