package main

import "github.com/fenilmodi00/ipo-admin/cmd"

func main() {
	cmd.Execute()
}
