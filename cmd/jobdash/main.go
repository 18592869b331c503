package main

import (
	"fmt"
	"os"
	// distroless環境でもDISPLAY_TIMEZONEを解決できるようにする
	_ "time/tzdata"

	"github.com/hitoshi/jobdash/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "jobdash: %v\n", err)
		os.Exit(1)
	}
}
