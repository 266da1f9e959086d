// Package util holds small helpers shared across the proxy and merge
// commands that don't belong to any one domain package.
package util

import (
	"errors"
	"math/rand"
	"os"
	"strconv"
)

// OpenFileUniqueName creates a file with a unique, randomly generated name
// built from the given prefix. It is opened with
// flag|os.O_CREATE|os.O_EXCL; os.O_WRONLY or os.O_RDWR should be specified
// for flag at minimum. It is the caller's responsibility to close (and
// maybe delete) the file when done with it.
func OpenFileUniqueName(prefix string, flag int, perm os.FileMode) (file *os.File, err error) {
	useFlag := flag | os.O_CREATE | os.O_EXCL
	for i := 0; i < 1000; i++ {
		rnd := rand.Int63()
		name := prefix + strconv.FormatInt(rnd, 16)
		if file, err := os.OpenFile(name, useFlag, perm); err == nil {
			return file, err
		} else if !os.IsExist(err) {
			return nil, err
		}
	}
	return nil, errors.New("gave up trying to create unique filename")
}
