package cmd

import (
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
)

func printBanner(w io.Writer) {
	fig := figure.NewFigure("pedex", "cybermedium", true)
	fmt.Fprint(w, fig.String())
	fmt.Fprintf(w, "\n  session core %s\n\n", Version)
}
