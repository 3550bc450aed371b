package main

import (
	"bufio"
	"fmt"
	"os"
)

// Prints the sum of its input plus one, so it fails every sum test.
func main() {
	reader := bufio.NewReader(os.Stdin)
	var total int64
	for {
		var value int64
		if _, err := fmt.Fscan(reader, &value); err != nil {
			break
		}
		total += value
	}
	fmt.Println(total + 1)
}
