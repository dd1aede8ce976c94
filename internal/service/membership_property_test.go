package service

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/amoshaviv/flow-tester-sub001/internal/models"
)

var propertySlugs = []string{"login", "pay", "refund", "search", "ghost"}

// TestSuiteService_MembershipProperties drives a suite through random
// membership edits, runs and default switches and checks after every step
// that a suite has exactly one default version, versions are numbered
// 1..n, run versions never change membership and in-place edits keep the
// version's identity. Adds and removes that change nothing never fork.
func TestSuiteService_MembershipProperties(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	for _, slug := range propertySlugs[:4] {
		e.createTest(t, slug)
	}

	rapid.Check(t, func(rt *rapid.T) {
		suite, _, err := e.suites.Create(ctx, e.scope, &TestContentRequest{Title: "Prop", Description: "random walk"})
		require.NoError(rt, err)

		sealed := map[string][]string{}
		members := func(versionSlug string) []string {
			list, err := e.suites.ListVersionTests(ctx, e.scope, suite.Slug, versionSlug)
			require.NoError(rt, err)
			slugs := make([]string, 0, len(list))
			for _, m := range list {
				slugs = append(slugs, m.Slug)
			}
			sort.Strings(slugs)
			return slugs
		}

		var versions []models.TestSuiteVersion
		reload := func() {
			detail, err := e.suites.Get(ctx, e.scope, suite.Slug)
			require.NoError(rt, err)
			versions = detail.Versions
		}
		reload()

		steps := rapid.IntRange(1, 8).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			target := versions[rapid.IntRange(0, len(versions)-1).Draw(rt, "target")]

			switch rapid.SampledFrom([]string{"edit", "run", "default"}).Draw(rt, "op") {
			case "run":
				_, err := e.runs.CreateSuiteRun(ctx, e.scope, suite.Slug, &CreateSuiteRunRequest{VersionSlug: target.Slug})
				if errors.Is(err, ErrNotFound) {
					require.Empty(rt, members(target.Slug))
					continue
				}
				require.NoError(rt, err)
				sealed[target.Slug] = members(target.Slug)

			case "default":
				_, err := e.suites.SetDefaultVersion(ctx, e.scope, suite.Slug, target.Slug)
				require.NoError(rt, err)

			default:
				slugs := rapid.SliceOfN(rapid.SampledFrom(propertySlugs), 0, 6).Draw(rt, "slugs")
				var res *MembershipUpdate
				op := rapid.SampledFrom([]string{"replace", "add", "remove"}).Draw(rt, "edit")
				switch op {
				case "replace":
					res, err = e.suites.UpdateTests(ctx, e.scope, suite.Slug, &UpdateSuiteTestsRequest{TestSuiteVersionSlug: target.Slug, TestSlugs: slugs})
				case "add":
					res, err = e.suites.AddTests(ctx, e.scope, suite.Slug, target.Slug, slugs)
				default:
					res, err = e.suites.RemoveTests(ctx, e.scope, suite.Slug, target.Slug, slugs)
				}
				require.NoError(rt, err)

				_, wasSealed := sealed[target.Slug]
				changed := op == "replace" || len(res.AddedTests) > 0 || len(res.RemovedTests) > 0
				require.Equal(rt, wasSealed && changed, res.Forked)
				if res.Forked {
					require.NotEqual(rt, target.Slug, res.TestSuiteVersion.Slug)
					require.Equal(rt, len(versions)+1, res.TestSuiteVersion.Number)
					require.True(rt, res.TestSuiteVersion.IsDefault)
				} else {
					require.Equal(rt, target.Slug, res.TestSuiteVersion.Slug)
					require.Equal(rt, target.Number, res.TestSuiteVersion.Number)
				}
				for _, ref := range res.AddedTests {
					require.NotEqual(rt, "ghost", ref.Slug)
				}
			}

			reload()

			defaults := 0
			for n, v := range versions {
				require.Equal(rt, n+1, v.Number)
				if v.IsDefault {
					defaults++
				}
			}
			require.Equal(rt, 1, defaults)

			for slug, want := range sealed {
				require.Equal(rt, want, members(slug), "sealed version %s changed", slug)
			}
		}
	})
}
