// sendwatch governs outbound actions proposed by autonomous agents:
// frequency safeguards, content risk rules, and a kill-switch decide
// what sends, what queues for approval, and what blocks.
package main

import "github.com/ppiankov/sendwatch/internal/cli"

func main() {
	cli.Execute()
}
