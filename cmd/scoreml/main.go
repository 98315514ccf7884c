// Command scoreml ingests the student table, selects a regression model for
// the math score and serves predictions from the saved artifacts.
package main

import (
	"fmt"
	"os"
)

func main() {
	app := &app{}
	root := newRootCmd(app)
	err := root.Execute()
	if cerr := app.close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "scoreml: %v\n", err)
		os.Exit(1)
	}
}
