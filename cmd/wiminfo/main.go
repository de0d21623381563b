// Command wiminfo prints the security-descriptor table found at the start
// of an image metadata blob.
//
// Usage:
//
//	wiminfo [-compression none|zstd|deflate] [-original-size N] <blob file>
//
// When a compression codec is given, the blob is decompressed to the
// declared original size before decoding.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mrpoons-studio/wimlib/resource"
	"github.com/mrpoons-studio/wimlib/security"
)

func main() {
	compression := flag.String("compression", "none", "codec the blob is stored with: none, zstd, or deflate")
	originalSize := flag.Uint64("original-size", 0, "declared uncompressed size of the blob (required with compression)")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: wiminfo [flags] <metadata blob file>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *compression, *originalSize, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "wiminfo:", err)
		os.Exit(1)
	}
}

func run(path, compression string, originalSize uint64, verbose bool) error {
	blob, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if compression != "none" {
		codec, err := parseCompression(compression)
		if err != nil {
			return err
		}
		blob, err = resource.Decompress(blob, originalSize, codec)
		if err != nil {
			return err
		}
	}

	var opts []security.DecodeOption
	if verbose {
		opts = append(opts, security.WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	}

	tbl, err := security.Decode(blob, opts...)
	if err != nil {
		return err
	}

	fmt.Println("[SECURITY DATA]")
	fmt.Printf("Length            = %d bytes\n", tbl.TotalLength())
	fmt.Printf("Number of Entries = %d\n", tbl.Count())
	fmt.Println()

	for i := 0; i < tbl.Count(); i++ {
		fmt.Printf("[SecurityDescriptor %d, length = %d]\n", i, tbl.Size(i))
		desc, err := security.ParseDescriptor(tbl.Descriptor(i))
		if err != nil {
			fmt.Printf("(undecodable: %v)\n\n", err)
			continue
		}
		fmt.Println(desc)
	}
	return nil
}

func parseCompression(name string) (resource.Compression, error) {
	switch name {
	case "zstd":
		return resource.CompressionZstd, nil
	case "deflate":
		return resource.CompressionDeflate, nil
	default:
		return 0, fmt.Errorf("unknown compression %q", name)
	}
}
