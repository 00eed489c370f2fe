// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package animation

import "fmt"

// Status is the decode state of an Asset.
type Status int32

const (
	Unprocessed Status = iota
	Processing
	CoverImageCompleted
	Processed
	Canceled
	Error
)

// done returns whether no further pipeline transitions can occur from s.
func (s Status) done() bool {
	return s >= Processed
}

func (s Status) String() string {
	switch s {
	case Unprocessed:
		return "unprocessed"
	case Processing:
		return "processing"
	case CoverImageCompleted:
		return "cover_image_completed"
	case Processed:
		return "processed"
	case Canceled:
		return "canceled"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// ErrorKind is the class of failure recorded by an Asset in the Error
// status. ErrorKind values are errors and are used as sentinels with
// errors.Is.
type ErrorKind uint8

const (
	NoError ErrorKind = iota

	// FileCreationError and FileHandleError indicate that the encoded
	// data could not be staged for decoding.
	FileCreationError
	FileHandleError

	// ImageFrameError indicates that a frame could not be decoded or
	// does not exist.
	ImageFrameError
)

func (k ErrorKind) Error() string {
	switch k {
	case NoError:
		return "no error"
	case FileCreationError:
		return "file creation error"
	case FileHandleError:
		return "file handle error"
	case ImageFrameError:
		return "image frame error"
	default:
		return fmt.Sprintf("error kind(%d)", uint8(k))
	}
}
