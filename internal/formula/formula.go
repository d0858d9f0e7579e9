// Package formula models the Homebrew formula that builds and smoke-tests
// ngic, renders it as Ruby, and runs its post-install assertions against a
// built binary.
package formula

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/drhuang0922/ngic/internal/checksum"
)

const (
	// HelpBanner must appear in `ngic -h` output.
	HelpBanner = "Next Generation Image Converter"
	// UsageMarker must appear in `ngic -h` output.
	UsageMarker = "Usage:"

	repo = "https://github.com/drhuang0922/ngic"
)

var (
	// ErrMissingChecksum means the formula has no archive checksum. Homebrew
	// would then skip integrity verification of the download.
	ErrMissingChecksum = errors.New("formula sha256 is empty")
	// ErrInvalidChecksum means the checksum is not a lowercase hex SHA-256.
	ErrInvalidChecksum = errors.New("formula sha256 is not a 64-character hex digest")
)

// Formula is the package-build descriptor consumed by Homebrew.
type Formula struct {
	Name        string
	Desc        string
	Homepage    string
	URL         string
	SHA256      string
	License     string
	Head        string
	HeadBranch  string
	Version     string
	BuildTarget string
	LDFlags     string
}

// Default returns the ngic formula for version, with an empty checksum.
func Default(version string) *Formula {
	return &Formula{
		Name:        "ngic",
		Desc:        HelpBanner + " - Convert JPG/PNG to WebP/AVIF",
		Homepage:    repo,
		URL:         ArchiveURL(version),
		License:     "MIT",
		Head:        repo + ".git",
		HeadBranch:  "main",
		Version:     version,
		BuildTarget: "./cmd/ngic",
		LDFlags:     "-s -w",
	}
}

// ArchiveURL returns the GitHub source archive URL for a release version.
func ArchiveURL(version string) string {
	return fmt.Sprintf("%s/archive/v%s.tar.gz", repo, strings.TrimPrefix(version, "v"))
}

// ClassName returns the Ruby class name Homebrew derives from the formula
// name ("ngic" -> "Ngic", "foo-bar" -> "FooBar").
func (f *Formula) ClassName() string {
	var sb strings.Builder
	for _, part := range strings.FieldsFunc(f.Name, func(r rune) bool {
		return r == '-' || r == '_' || r == '.' || r == '@'
	}) {
		sb.WriteString(strings.ToUpper(part[:1]))
		sb.WriteString(part[1:])
	}
	return sb.String()
}

// Validate checks the fields Homebrew needs to fetch, verify and build.
func (f *Formula) Validate() error {
	var missing []string
	if f.Name == "" {
		missing = append(missing, "name")
	}
	if f.URL == "" {
		missing = append(missing, "url")
	}
	if f.Version == "" {
		missing = append(missing, "version")
	}
	if f.BuildTarget == "" {
		missing = append(missing, "build target")
	}
	if len(missing) > 0 {
		return fmt.Errorf("formula is missing %s", strings.Join(missing, ", "))
	}

	if f.SHA256 == "" {
		return ErrMissingChecksum
	}
	if !checksum.Valid(f.SHA256) {
		return fmt.Errorf("%w: %q", ErrInvalidChecksum, f.SHA256)
	}
	return nil
}

var rubyTemplate = template.Must(template.New("formula").Parse(`class {{.ClassName}} < Formula
  desc "{{.Desc}}"
  homepage "{{.Homepage}}"
  url "{{.URL}}"
  sha256 "{{.SHA256}}"
  license "{{.License}}"
{{- if .Head}}
  head "{{.Head}}"{{if .HeadBranch}}, branch: "{{.HeadBranch}}"{{end}}
{{- end}}

  depends_on "go" => :build

  def install
    system "go", "build", *std_go_args(ldflags: "{{.LDFlags}}"), "{{.BuildTarget}}"
  end

  test do
    assert_match version.to_s, shell_output("#{bin}/{{.Name}} -version")

    help_output = shell_output("#{bin}/{{.Name}} -h")
    assert_match "{{.Banner}}", help_output
    assert_match "{{.Usage}}", help_output
  end
end
`))

// Render validates the formula and writes it as Homebrew Ruby source.
func (f *Formula) Render(w io.Writer) error {
	if err := f.Validate(); err != nil {
		return err
	}

	data := struct {
		*Formula
		Banner string
		Usage  string
	}{f, HelpBanner, UsageMarker}

	if err := rubyTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render formula: %w", err)
	}
	return nil
}

// SetChecksumFromFile fills SHA256 from a local release archive.
func (f *Formula) SetChecksumFromFile(archivePath string) error {
	sum, err := checksum.File(archivePath)
	if err != nil {
		return err
	}
	f.SHA256 = sum
	return nil
}
