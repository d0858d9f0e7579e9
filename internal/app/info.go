package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/drhuang0922/ngic/internal/checksum"
	"github.com/drhuang0922/ngic/internal/converter"
	"github.com/drhuang0922/ngic/internal/output"
)

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Show image dimensions, format and size",
	Long: `Display the dimensions, encoded format, file size and SHA-256 of an image.
Only the image header is decoded.`,
	Example: `  ngic info photo.jpg`,
	Args:    cobra.ExactArgs(1),
	RunE:    runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	path := args[0]
	out := cmd.OutOrStdout()

	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	if stat.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}

	width, height, format, err := converter.GetImageInfo(path)
	if err != nil {
		return err
	}

	sum, err := checksum.File(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "File:       %s\n", path)
	fmt.Fprintf(out, "Format:     %s\n", format)
	fmt.Fprintf(out, "Dimensions: %dx%d\n", width, height)
	fmt.Fprintf(out, "Size:       %s\n", output.FormatSize(stat.Size()))
	fmt.Fprintf(out, "Modified:   %s\n", output.FormatRelativeTime(stat.ModTime()))
	fmt.Fprintf(out, "SHA-256:    %s\n", sum)
	return nil
}
