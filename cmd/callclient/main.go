package main

import (
	"fmt"
	"os"

	"github.com/mossy-p/webrtc-call/cmd"
)

func main() {
	root := cmd.NewRootCommand("callclient", "Headless WebRTC call client")
	root.AddCommand(commandCall())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
