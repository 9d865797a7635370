package utils

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorDuplicate is returned by stores when a unique constraint rejects a write.
var ErrorDuplicate = errors.New("duplicate record")

// TranslateDBError maps gorm/mysql errors onto the package sentinels.
func TranslateDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrorRecordNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrorDuplicate
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
		return ErrorDuplicate
	}
	return err
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrorRecordNotFound)
}

func IsDuplicate(err error) bool {
	return errors.Is(err, ErrorDuplicate)
}
