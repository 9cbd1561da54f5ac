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
package cmd

import (
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/washanhanzi/cargo-appraiser/internal/logging"
	"github.com/washanhanzi/cargo-appraiser/lsp"
	"github.com/washanhanzi/cargo-appraiser/lsp/types"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cargo-appraiser",
	Short: "Language server for Cargo.toml",
	Long: `A Language Server Protocol (LSP) server for Cargo manifest files.

The server compares the dependencies declared in Cargo.toml against what
cargo actually resolves, and surfaces the difference in the editor:

- Inline decorations or inlay hints showing installed vs latest versions
- Hover with available registry versions and feature activations
- Code actions updating a version requirement or running cargo update
- Diagnostics for yanked and vulnerable crates (via cargo audit)
- Go-to-definition for workspace-inherited dependencies`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Redirect pterm to stderr immediately: stdout carries LSP framing
		pterm.SetDefaultOutput(os.Stderr)

		if viper.GetBool("debug") {
			logging.SetDebugEnabled(true)
		}

		kind := types.RendererKind(viper.GetString("renderer"))
		var capabilities []string
		if raw := viper.GetString("client-capabilities"); raw != "" {
			for _, c := range strings.Split(raw, ",") {
				if c = strings.TrimSpace(c); c != "" {
					capabilities = append(capabilities, c)
				}
			}
		}

		server, err := lsp.NewServer(kind, capabilities)
		if err != nil {
			return err
		}

		logging.Info("cargo-appraiser starting (renderer=%s)", kind)
		return server.RunStdio()
	},
}

// Execute runs the root command; it exits non-zero on unrecoverable
// initialization failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().String("renderer", string(types.RendererVSCode), "editor projection: vscode (decorations) or inlayHint")
	rootCmd.Flags().Bool("stdio", true, "serve LSP over stdio")
	rootCmd.Flags().String("client-capabilities", "", "comma-separated custom client capabilities (e.g. readFile)")
	rootCmd.Flags().Bool("debug", false, "enable debug logging to stderr")

	// CARGO_APPRAISER_RENDERER etc. supply flag values from the environment;
	// a flag set on the command line wins
	viper.SetEnvPrefix("cargo_appraiser")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	if err := viper.BindPFlags(rootCmd.Flags()); err != nil {
		pterm.Error.Println(err)
	}
}
