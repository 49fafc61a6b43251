//go:build windows

package pathindex

import "errors"

func mkfifo(string) error {
	return errors.New("fifos are not supported on windows")
}
