package main

import "github.com/andresmejia3/facecmp/cmd"

func main() {
	cmd.Execute()
}
