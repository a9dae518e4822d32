package testlib

import (
	"sync"
	"testing"
)

// Repeat runs the function sequentially the given number of times
func Repeat(t *testing.T, times int, f func(t *testing.T)) {
	for i := 0; i < times; i++ {
		f(t)
	}
}

// RepeatConcurrent runs the function in the given number of goroutines and waits for all of them to finish
func RepeatConcurrent(t *testing.T, times int, f func(t *testing.T)) {
	wg := sync.WaitGroup{}
	wg.Add(times)
	for i := 0; i < times; i++ {
		go func() {
			defer wg.Done()
			f(t)
		}()
	}
	wg.Wait()
}
