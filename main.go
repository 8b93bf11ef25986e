package main

import "github.com/zomco/hubot-heyodo/cmd"

func main() {
	cmd.Execute()
}
