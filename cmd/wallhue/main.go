// Command wallhue extracts a 16-color palette from a wallpaper image,
// renders it to configured formats, generates effect variants, and applies
// the wallpaper system-wide.
package main

import "github.com/jmylchreest/wallhue/internal/cli"

func main() {
	cli.Execute()
}
