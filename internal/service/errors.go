package service

import "errors"

// 서비스 계층 에러. 핸들러가 HTTP 상태/소켓 에러 이벤트로 변환한다.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrForbidden       = errors.New("permission denied")
	ErrConflict        = errors.New("conflicting state")
	ErrUnauthenticated = errors.New("authentication required")
)
