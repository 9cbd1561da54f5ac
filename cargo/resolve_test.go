/*
Copyright © 2025 cargo-appraiser contributors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package cargo

import (
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/washanhanzi/cargo-appraiser/manifest"
)

const sampleMetadata = `{
  "packages": [
    {
      "id": "demo 0.1.0 (path+file:///ws/demo)",
      "name": "demo",
      "version": "0.1.0",
      "source": null,
      "dependencies": [
        {"name": "serde", "req": "^1.0.100", "kind": null, "target": null, "optional": false},
        {"name": "tokio", "req": "^1.17", "kind": null, "target": null, "optional": false},
        {"name": "criterion", "req": "^0.5", "kind": "dev", "target": null, "optional": false},
        {"name": "winapi", "req": "^0.3", "kind": null, "target": "cfg(windows)", "optional": false}
      ]
    },
    {
      "id": "serde 1.0.100 (registry+https://github.com/rust-lang/crates.io-index)",
      "name": "serde",
      "version": "1.0.100",
      "source": "registry+https://github.com/rust-lang/crates.io-index",
      "dependencies": []
    },
    {
      "id": "tokio 1.17.0 (registry+https://github.com/rust-lang/crates.io-index)",
      "name": "tokio",
      "version": "1.17.0",
      "source": "registry+https://github.com/rust-lang/crates.io-index",
      "dependencies": []
    },
    {
      "id": "criterion 0.5.1 (registry+https://github.com/rust-lang/crates.io-index)",
      "name": "criterion",
      "version": "0.5.1",
      "source": "registry+https://github.com/rust-lang/crates.io-index",
      "dependencies": []
    }
  ],
  "workspace_members": ["demo 0.1.0 (path+file:///ws/demo)"],
  "workspace_root": "/ws"
}`

func versions(t *testing.T, specs ...string) []VersionInfo {
	t.Helper()
	out := make([]VersionInfo, 0, len(specs))
	for _, s := range specs {
		v, err := semver.NewVersion(s)
		require.NoError(t, err)
		out = append(out, VersionInfo{Version: v})
	}
	return out
}

func TestBuildResolutionIndex(t *testing.T) {
	idx, err := BuildResolutionIndex([]byte(sampleMetadata))
	require.NoError(t, err)

	assert.Equal(t, "/ws", idx.WorkspaceRoot)

	serde, ok := idx.Get(DepKey{Table: manifest.TableNormal, Name: "serde"})
	require.True(t, ok)
	require.True(t, serde.IsInstalled())
	assert.Equal(t, "1.0.100", serde.Installed.Version.String())
	assert.Equal(t, "^1.0.100", serde.Requirement)

	criterion, ok := idx.Get(DepKey{Table: manifest.TableDev, Name: "criterion"})
	require.True(t, ok)
	assert.True(t, criterion.IsInstalled())

	// dev entry is not visible under the normal table
	_, ok = idx.Get(DepKey{Table: manifest.TableNormal, Name: "criterion"})
	assert.False(t, ok)
}

func TestPlatformFilteredDependency(t *testing.T) {
	idx, err := BuildResolutionIndex([]byte(sampleMetadata))
	require.NoError(t, err)

	// declared for cfg(windows) but filtered out of the package graph
	winapi, ok := idx.Get(DepKey{Table: manifest.TableNormal, Platform: "cfg(windows)", Name: "winapi"})
	require.True(t, ok)
	assert.False(t, winapi.IsInstalled())

	// the declaration is keyed by platform, not bare
	_, ok = idx.Get(DepKey{Table: manifest.TableNormal, Name: "winapi"})
	assert.False(t, ok)
}

func TestEnrichComputesSummaries(t *testing.T) {
	idx, err := BuildResolutionIndex([]byte(sampleMetadata))
	require.NoError(t, err)

	idx.Enrich("serde", versions(t, "1.0.210", "1.0.200", "1.0.100"))

	serde, _ := idx.Get(DepKey{Table: manifest.TableNormal, Name: "serde"})
	require.NotNil(t, serde.Latest)
	assert.Equal(t, "1.0.210", serde.Latest.String())
	require.NotNil(t, serde.LatestMatched)
	assert.Equal(t, "1.0.210", serde.LatestMatched.String())
	assert.True(t, serde.HasCompatibleUpgrade())
	assert.False(t, serde.IsLatest())
	assert.False(t, serde.HasIncompatibleLatest())
}

func TestEnrichMixedUpgrade(t *testing.T) {
	idx, err := BuildResolutionIndex([]byte(sampleMetadata))
	require.NoError(t, err)

	idx.Enrich("tokio", versions(t, "2.0.0", "1.44.0", "1.17.0"))

	tokio, _ := idx.Get(DepKey{Table: manifest.TableNormal, Name: "tokio"})
	assert.Equal(t, "2.0.0", tokio.Latest.String())
	assert.Equal(t, "1.44.0", tokio.LatestMatched.String())
	assert.True(t, tokio.HasCompatibleUpgrade())
	assert.True(t, tokio.HasIncompatibleLatest())
}

func TestEnrichSkipsYankedAndPrerelease(t *testing.T) {
	idx, err := BuildResolutionIndex([]byte(sampleMetadata))
	require.NoError(t, err)

	yanked, err := semver.NewVersion("1.0.300")
	require.NoError(t, err)
	pre, err := semver.NewVersion("2.0.0-beta.1")
	require.NoError(t, err)
	list := append([]VersionInfo{
		{Version: pre},
		{Version: yanked, Yanked: true},
	}, versions(t, "1.0.210", "1.0.100")...)

	idx.Enrich("serde", list)
	serde, _ := idx.Get(DepKey{Table: manifest.TableNormal, Name: "serde"})
	assert.Equal(t, "1.0.210", serde.Latest.String())
}

func TestInstalledYanked(t *testing.T) {
	idx, err := BuildResolutionIndex([]byte(sampleMetadata))
	require.NoError(t, err)

	installed, err := semver.NewVersion("1.0.100")
	require.NoError(t, err)
	idx.Enrich("serde", []VersionInfo{
		{Version: installed, Yanked: true},
	})
	serde, _ := idx.Get(DepKey{Table: manifest.TableNormal, Name: "serde"})
	assert.True(t, serde.InstalledYanked())
}

func TestWorkspaceJoinByName(t *testing.T) {
	idx, err := BuildResolutionIndex([]byte(sampleMetadata))
	require.NoError(t, err)

	// [workspace.dependencies] entries join by bare crate name
	ws, ok := idx.Get(DepKey{Table: manifest.TableWorkspace, Name: "serde"})
	require.True(t, ok)
	require.True(t, ws.IsInstalled())
	assert.Equal(t, "1.0.100", ws.Installed.Version.String())

	_, ok = idx.Get(DepKey{Table: manifest.TableWorkspace, Name: "nonexistent"})
	assert.False(t, ok)
}

func TestBuildResolutionIndexBadInput(t *testing.T) {
	_, err := BuildResolutionIndex([]byte(`{"not": "metadata"}`))
	require.Error(t, err)
	var ce *CargoError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrResolutionFailed, ce.Kind)
}
