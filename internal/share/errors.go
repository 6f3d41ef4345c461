package share

import "errors"

// 生命周期错误。handler 层按 errors.Is 映射为具体状态码。
var (
	ErrNotFound          = errors.New("分享不存在")
	ErrUnavailable       = errors.New("分享已停用")
	ErrExpired           = errors.New("分享已过期")
	ErrPasswordRequired  = errors.New("需要提取密码")
	ErrIncorrectPassword = errors.New("提取密码错误")
	ErrNotProtected      = errors.New("分享未设置密码")
	ErrAlreadyDeleted    = errors.New("分享已删除")
	ErrInvalidStatus     = errors.New("无效的目标状态")
	ErrNoChange          = errors.New("状态未发生变化")
	ErrOwnerNotFound     = errors.New("归属用户不存在")
)
