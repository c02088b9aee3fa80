package main

import "github.com/KingCatto/DepotDumperMorrenusEdition-sub000/cmd/cdnctl/cmd"

func main() {
	cmd.Execute()
}
