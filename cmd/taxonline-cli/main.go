package main

import "github.com/taxonline/admin/cli/internal/cmd"

func main() {
	cmd.Execute()
}
