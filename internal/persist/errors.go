package persist

import "codeberg.org/mkrell/relayctl/internal/errors"

const (
	ErrStorageInit   = errors.ErrorCode("persist_storage_init_failed")
	ErrStorageAppend = errors.ErrorCode("persist_storage_append_failed")
	ErrStorageFlush  = errors.ErrorCode("persist_storage_flush_failed")
	ErrStorageClose  = errors.ErrorCode("persist_storage_close_failed")
)
