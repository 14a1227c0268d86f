package queuestore

import "encoding/binary"

var (
	defPrefix = []byte("q/def/")
	msgPrefix = []byte("q/msg/")
)

func defKey(name string) []byte {
	k := make([]byte, 0, len(defPrefix)+len(name))
	k = append(k, defPrefix...)
	return append(k, name...)
}

// msgQueuePrefix is q/msg/<name>/ so one queue's range never covers a
// queue whose name extends it.
func msgQueuePrefix(name string) []byte {
	k := make([]byte, 0, len(msgPrefix)+len(name)+1)
	k = append(k, msgPrefix...)
	k = append(k, name...)
	return append(k, '/')
}

func msgKey(name string, seq uint64) []byte {
	return binary.BigEndian.AppendUint64(msgQueuePrefix(name), seq)
}
