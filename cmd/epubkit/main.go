// Command epubkit builds, validates, merges, and converts EPUB 2.0.1
// and 3.3 archives from the command line.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kdahlquist/epubkit/pkg/deserialize"
	"github.com/kdahlquist/epubkit/pkg/epub"
	"github.com/kdahlquist/epubkit/pkg/merge"
	"github.com/kdahlquist/epubkit/pkg/report"
	"github.com/kdahlquist/epubkit/pkg/serialize"
)

const version = "0.1.0"

func main() {
	args := os.Args[1:]

	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	for _, arg := range args {
		if arg == "--version" {
			fmt.Printf("epubkit %s\n", version)
			os.Exit(0)
		}
	}

	switch args[0] {
	case "validate":
		runValidate(args[1:])
	case "build":
		runBuild(args[1:])
	case "merge":
		runMerge(args[1:])
	case "convert":
		runConvert(args[1:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage:
  epubkit validate <file.epub> [--json <output.json | ->]
  epubkit build <manifest.json> -o <output.epub>
  epubkit merge <a.epub> <b.epub> [<more.epub>...] -o <output.epub>
  epubkit convert <file.epub> --to 2|3 -o <output.epub>
  epubkit --version`)
}

// manifest is the input shape for the build subcommand: a flat
// declaration of metadata, chapters (addressed by index for
// parent-child linking) and images.
type manifest struct {
	Metadata epub.DublinCoreMetadata `json:"metadata"`
	Version  string                  `json:"version"` // "2" or "3", default "3"
	Chapters []manifestChapter       `json:"chapters"`
	Images   []manifestImage         `json:"images"`
}

type manifestChapter struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	ParentIndex  *int   `json:"parent_index"`
	HeadingLevel int    `json:"heading_level"`
}

type manifestImage struct {
	Filename string `json:"filename"`
	Path     string `json:"path"` // local filesystem path to read bytes from
	Alt      string `json:"alt"`
	IsCover  bool   `json:"is_cover"`
}

func runBuild(args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}
	manifestPath := args[0]
	outputPath := flagValue(args[1:], "-o")
	if outputPath == "" {
		fmt.Fprintln(os.Stderr, "build: -o <output.epub> is required")
		os.Exit(2)
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(2)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: invalid manifest: %v\n", err)
		os.Exit(2)
	}

	pub, err := epub.New(m.Metadata, epub.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(2)
	}

	ids := make([]string, len(m.Chapters))
	for i, mc := range m.Chapters {
		var parentID string
		if mc.ParentIndex != nil {
			if *mc.ParentIndex < 0 || *mc.ParentIndex >= i {
				fmt.Fprintf(os.Stderr, "Fatal: chapter %d has invalid parent_index %d\n", i, *mc.ParentIndex)
				os.Exit(2)
			}
			parentID = ids[*mc.ParentIndex]
		}
		id, err := pub.AddChapter(epub.AddChapterOptions{
			Title:        mc.Title,
			Content:      mc.Content,
			ParentID:     parentID,
			HeadingLevel: mc.HeadingLevel,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fatal: chapter %d: %v\n", i, err)
			os.Exit(2)
		}
		ids[i] = id
	}

	for i, mi := range m.Images {
		imgData, err := os.ReadFile(mi.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fatal: image %d: %v\n", i, err)
			os.Exit(2)
		}
		if _, err := pub.AddImage(epub.AddImageOptions{Filename: mi.Filename, Data: imgData, Alt: mi.Alt, IsCover: mi.IsCover}); err != nil {
			fmt.Fprintf(os.Stderr, "Fatal: image %d: %v\n", i, err)
			os.Exit(2)
		}
	}

	exportOpts := epub.ExportOptions{Version: versionFromString(m.Version)}
	if err := serialize.ExportToFile(pub, outputPath, exportOpts); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(2)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", outputPath)
}

func runValidate(args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}
	epubPath := args[0]
	jsonOutput := flagValue(args[1:], "--json")

	data, err := os.ReadFile(epubPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(2)
	}

	res, err := deserialize.Deserialize(data, epub.DefaultOptions(), "file")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(2)
	}

	structural := res.Publication.Validate()
	r := mergeReports(res.Report, structural)

	report.WriteText(os.Stderr, r)

	if jsonOutput == "" || jsonOutput == "-" {
		if err := report.WriteJSON(os.Stdout, r); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			os.Exit(2)
		}
	} else {
		if err := report.WriteJSON(os.Stdout, r); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			os.Exit(2)
		}
		if err := writeJSONFile(r, jsonOutput); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing JSON: %v\n", err)
			os.Exit(2)
		}
	}

	if !r.IsValid() {
		os.Exit(1)
	}
	os.Exit(0)
}

// mergeReports combines the deserialization orchestrator's diagnostics
// (malformed or missing navigation, orphan chapters) with the
// structural checks Validate runs on the reconstructed model.
func mergeReports(a, b *epub.ValidationReport) *epub.ValidationReport {
	out := &epub.ValidationReport{}
	out.Errors = append(out.Errors, a.Errors...)
	out.Errors = append(out.Errors, b.Errors...)
	out.Warnings = append(out.Warnings, a.Warnings...)
	out.Warnings = append(out.Warnings, b.Warnings...)
	return out
}

func writeJSONFile(r *epub.ValidationReport, path string) error {
	if path == "-" {
		return report.WriteJSON(os.Stdout, r)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return report.WriteJSON(f, r)
}

func runMerge(args []string) {
	outputPath := flagValue(args, "-o")
	if outputPath == "" {
		fmt.Fprintln(os.Stderr, "merge: -o <output.epub> is required")
		os.Exit(2)
	}
	var sources []string
	for i := 0; i < len(args); i++ {
		if args[i] == "-o" {
			i++
			continue
		}
		sources = append(sources, args[i])
	}
	if len(sources) < 2 {
		fmt.Fprintln(os.Stderr, "merge: at least two source EPUBs are required")
		os.Exit(2)
	}

	dest, err := epub.New(epub.DublinCoreMetadata{Title: "Combined", Creator: "epubkit"}, epub.DefaultOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(2)
	}

	seen := merge.NewSeenResources()
	for i, src := range sources {
		data, err := os.ReadFile(src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
			os.Exit(2)
		}
		res, err := deserialize.Deserialize(data, epub.DefaultOptions(), "file")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
			os.Exit(2)
		}
		sectionTitle := res.Publication.Metadata.Title
		if _, err := merge.AddPublicationAsChapter(dest, merge.SectionOptions{Title: sectionTitle}, res.Publication, seen, i+1); err != nil {
			fmt.Fprintf(os.Stderr, "Fatal: merging %s: %v\n", src, err)
			os.Exit(2)
		}
	}

	if err := serialize.ExportToFile(dest, outputPath, epub.ExportOptions{}); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(2)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", outputPath)
}

func runConvert(args []string) {
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}
	epubPath := args[0]
	target := flagValue(args[1:], "--to")
	outputPath := flagValue(args[1:], "-o")
	if outputPath == "" {
		fmt.Fprintln(os.Stderr, "convert: -o <output.epub> is required")
		os.Exit(2)
	}

	data, err := os.ReadFile(epubPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(2)
	}
	res, err := deserialize.Deserialize(data, epub.DefaultOptions(), "file")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(2)
	}

	if err := serialize.ExportToFile(res.Publication, outputPath, epub.ExportOptions{Version: versionFromString(target)}); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(2)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s\n", outputPath)
}

func versionFromString(s string) epub.FormatVersion {
	if s == "2" {
		return epub.V2
	}
	return epub.V3
}

func flagValue(args []string, name string) string {
	for i, a := range args {
		if a == name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
