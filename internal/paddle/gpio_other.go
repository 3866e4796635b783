//go:build !linux

package paddle

import "errors"

func openInput(int) (Pin, error) {
	return nil, errors.ErrUnsupported
}
