package convo

import (
	"strconv"

	"github.com/parleyhq/parley/pkg/kv"
)

// KV key layout.
//
//	thread/{id}                → msgpack Thread
//	convo/{id}/msg/{ts_ns}     → msgpack Message
//	convo/{id}/revert          → timestamp string (revert point)
//
// Nanosecond timestamps render as fixed-width decimals for the
// foreseeable future, so lexicographic key order is chronological.

func threadKey(id string) kv.Key {
	return kv.Key{"thread", id}
}

func threadPrefix() kv.Key {
	return kv.Key{"thread"}
}

func msgKey(id string, ts int64) kv.Key {
	return kv.Key{"convo", id, "msg", strconv.FormatInt(ts, 10)}
}

func msgPrefix(id string) kv.Key {
	return kv.Key{"convo", id, "msg"}
}

func revertKey(id string) kv.Key {
	return kv.Key{"convo", id, "revert"}
}
