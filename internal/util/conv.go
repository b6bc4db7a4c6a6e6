package util

import (
	"strconv"
)

// ParseUserID 解析路径中的用户 ID，非法或为 0 时返回校验错误
func ParseUserID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil || id == 0 {
		return 0, Validation("invalid user id %q", s)
	}
	return uint(id), nil
}
