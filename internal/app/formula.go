package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/drhuang0922/ngic/internal/formula"
	"github.com/drhuang0922/ngic/internal/output"
	"github.com/drhuang0922/ngic/internal/version"
)

var (
	formulaVersion string
	formulaArchive string
	formulaSHA256  string
	formulaOutput  string
	formulaBinary  string

	formulaCmd = &cobra.Command{
		Use:   "formula",
		Short: "Render or verify the Homebrew formula",
		Long: `Work with the Homebrew formula that builds ngic from a release archive.

  render  writes the formula as Ruby, with the archive checksum filled in
  verify  runs the formula's post-install test against a built binary`,
	}

	formulaRenderCmd = &cobra.Command{
		Use:   "render",
		Short: "Write the Homebrew formula",
		Long: `Render the Homebrew formula for a release. The archive checksum is required:
pass the release tarball with --archive to compute it, or give it with --sha256.
A formula without a valid SHA-256 is refused.`,
		Example: `  # Checksum from a downloaded release archive
  ngic formula render --version 1.0.0 --archive v1.0.0.tar.gz

  # Known checksum, written to a tap checkout
  ngic formula render --sha256 <hex> -o homebrew-tap/Formula/ngic.rb`,
		Args: cobra.NoArgs,
		RunE: runFormulaRender,
	}

	formulaVerifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Run the formula's post-install test",
		Long: `Run the same assertions as the formula's test block: "<bin> -version" must
print the version, and "<bin> -h" must print "` + formula.HelpBanner + `" and
"` + formula.UsageMarker + `". Defaults to checking this binary.`,
		Example: `  ngic formula verify
  ngic formula verify --bin ./bin/ngic --version 1.0.0`,
		Args: cobra.NoArgs,
		RunE: runFormulaVerify,
	}
)

func init() {
	formulaCmd.PersistentFlags().StringVar(&formulaVersion, "version", version.Version, "release version")

	formulaRenderCmd.Flags().StringVar(&formulaArchive, "archive", "", "release archive to checksum")
	formulaRenderCmd.Flags().StringVar(&formulaSHA256, "sha256", "", "archive SHA-256")
	formulaRenderCmd.Flags().StringVarP(&formulaOutput, "output", "o", "", "write to file instead of stdout")
	formulaRenderCmd.MarkFlagsMutuallyExclusive("archive", "sha256")

	formulaVerifyCmd.Flags().StringVar(&formulaBinary, "bin", "", "ngic binary to test (default: this executable)")

	formulaCmd.AddCommand(formulaRenderCmd)
	formulaCmd.AddCommand(formulaVerifyCmd)
}

func runFormulaRender(cmd *cobra.Command, args []string) error {
	f := formula.Default(formulaVersion)

	switch {
	case formulaArchive != "":
		if err := f.SetChecksumFromFile(formulaArchive); err != nil {
			return err
		}
	case formulaSHA256 != "":
		f.SHA256 = strings.ToLower(strings.TrimSpace(formulaSHA256))
	}

	if err := f.Validate(); err != nil {
		if errors.Is(err, formula.ErrMissingChecksum) {
			return fmt.Errorf("%w (use --archive or --sha256)", err)
		}
		return err
	}

	if formulaOutput == "" {
		return f.Render(cmd.OutOrStdout())
	}
	return writeFormulaFile(f, formulaOutput)
}

func writeFormulaFile(f *formula.Formula, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := f.Render(file); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	return file.Close()
}

func runFormulaVerify(cmd *cobra.Command, args []string) error {
	bin := formulaBinary
	if bin == "" {
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}
		bin = self
	}

	spinner := output.NewSpinner(cmd.OutOrStdout(), "Verifying "+bin)
	spinner.Start()

	if err := formula.Verify(cmd.Context(), bin, formulaVersion); err != nil {
		spinner.Stop()
		return fmt.Errorf("formula test failed: %w", err)
	}
	spinner.StopWithMessage("✓ Formula test passed")
	return nil
}
