package util

// 单次搜索结果的上限
const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)
