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
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/adrg/xdg"
	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/tidwall/gjson"
)

// DefaultSparseIndexURL is the crates.io sparse index.
const DefaultSparseIndexURL = "https://index.crates.io"

// RegistryClient reads crate version summaries from a sparse registry
// index. Responses are cached on disk per RFC 7234; the index serves
// strong validators, so unchanged crates cost one conditional request.
type RegistryClient struct {
	client  *http.Client
	baseURL string
}

// NewRegistryClient creates a client for the crates.io sparse index with a
// disk-backed HTTP cache under the user cache directory.
func NewRegistryClient() *RegistryClient {
	cacheDir := filepath.Join(xdg.CacheHome, "cargo-appraiser", "index")
	transport := httpcache.NewTransport(diskcache.New(cacheDir))
	return &RegistryClient{
		client:  transport.Client(),
		baseURL: DefaultSparseIndexURL,
	}
}

// NewRegistryClientWith creates a client against a specific index URL and
// HTTP client; used by tests.
func NewRegistryClientWith(baseURL string, client *http.Client) *RegistryClient {
	return &RegistryClient{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// Versions fetches all published versions of a crate, sorted descending by
// semver with pre-releases ordered below their release.
func (c *RegistryClient) Versions(ctx context.Context, name string) ([]VersionInfo, error) {
	url := c.baseURL + "/" + sparseIndexPath(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry fetch for %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry fetch for %s: unexpected status %d", name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("registry fetch for %s: %w", name, err)
	}

	return parseIndexLines(body), nil
}

// parseIndexLines decodes the newline-delimited JSON summaries of a sparse
// index file.
func parseIndexLines(body []byte) []VersionInfo {
	var versions []VersionInfo
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		entry := gjson.Parse(line)
		v, err := semver.NewVersion(entry.Get("vers").String())
		if err != nil {
			continue
		}
		info := VersionInfo{Version: v, Yanked: entry.Get("yanked").Bool()}
		if features := entry.Get("features"); features.IsObject() {
			info.Features = make(map[string][]string)
			features.ForEach(func(k, val gjson.Result) bool {
				var activates []string
				val.ForEach(func(_, f gjson.Result) bool {
					activates = append(activates, f.String())
					return true
				})
				info.Features[k.String()] = activates
				return true
			})
		}
		versions = append(versions, info)
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[j].Version.LessThan(versions[i].Version)
	})
	return versions
}

// sparseIndexPath maps a crate name to its sparse index file path per the
// registry layout rules.
func sparseIndexPath(name string) string {
	name = strings.ToLower(name)
	switch len(name) {
	case 0:
		return ""
	case 1:
		return "1/" + name
	case 2:
		return "2/" + name
	case 3:
		return "3/" + name[:1] + "/" + name
	}
	return name[:2] + "/" + name[2:4] + "/" + name
}
