/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/i-gras/apiserver/cmd"

func main() {
	cmd.Execute()
}
