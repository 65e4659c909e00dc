package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "capture":
		return runCapture(args[2:])
	case "verify":
		return runVerify(args[2:])
	case "inspect":
		return runInspect(args[2:])
	case "export":
		return runExport(args[2:])
	}

	usage(args)
	return 1
}

func usage(args []string) {
	name := "attest"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s capture --in <photo.jpg> [--out <file>] [--gallery <dir>] [--key-dir <dir>] [--key-alias <alias>] [--app-name <name>] [--device-model <model>] [--os-version <version>] [--nonce <nonce>] [--lat <deg> --lon <deg>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s verify --in <signed.jpg>\n", name)
	fmt.Fprintf(os.Stderr, "  %s inspect --in <signed.jpg>\n", name)
	fmt.Fprintf(os.Stderr, "  %s export --in <signed.jpg> [--out <bundle.json>] [--bundle-id <id>]\n", name)
}
