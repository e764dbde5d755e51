package archive

import "codeberg.org/mkrell/relayctl/internal/errors"

const (
	ErrInvalidDBPath     = errors.ErrorCode("archive_invalid_db_path")
	ErrSchemaInitFailed  = errors.ErrorCode("archive_schema_init_failed")
	ErrTransactionFailed = errors.ErrorCode("archive_transaction_failed")
	ErrStorageInit       = errors.ErrInitFailed
	ErrStorageClose      = errors.ErrShutdownFailed
)
