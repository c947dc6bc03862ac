// Command oneshot runs the multi-agent social content assistant.
package main

func main() {
	Execute()
}
