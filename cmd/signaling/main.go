package main

import (
	"fmt"
	"os"

	"github.com/mossy-p/webrtc-call/cmd"
)

func main() {
	root := cmd.NewRootCommand("signaling", "WebRTC call signaling relay")
	root.AddCommand(commandServe())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
