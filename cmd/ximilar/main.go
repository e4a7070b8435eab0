// Command ximilar is a command line client for the Ximilar API.
package main

func main() {
	Execute()
}
