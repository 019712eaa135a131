package main

import "fmt"
import "flag"

import "github.com/bnclabs/memres/malloc"

var options struct {
	minblock int64
	maxblock int64
}

func argParse() {
	flag.Int64Var(&options.minblock, "minblock", 8,
		"minimum block size")
	flag.Int64Var(&options.maxblock, "maxblock", 4096,
		"maximum block size")
	flag.Parse()
}

func main() {
	argParse()
	tellutilization()
}

// tellutilization print the size classes a pool would use and the
// expected utilization of each class.
func tellutilization() {
	sizes := malloc.Blocksizes(options.minblock, options.maxblock)
	fmt.Println(sizes, options.minblock, options.maxblock)
	for i, size := range sizes[1:] {
		u := (float64(sizes[i]+1+size) / 2.0) / float64(size)
		fmt.Printf("size %4v, util %.2f\n", size, u)
	}
	fmt.Printf("total %v size classes\n", len(sizes))
}
