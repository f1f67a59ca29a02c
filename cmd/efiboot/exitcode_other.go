//go:build !unix

package main

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
