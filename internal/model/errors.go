package model

import "fmt"

// APIError はクライアントに返すドメインエラーを表す。
// レスポンスボディには {"error": Message} の形式で出力する。
type APIError struct {
	Code    string // エラーコード（HTTPステータスの決定に使用）
	Message string // クライアント向けメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingFields      = "MISSING_FIELDS"
	ErrCodeValidation         = "VALIDATION"
	ErrCodeEmailExists        = "EMAIL_EXISTS"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEntryNotFound      = "ENTRY_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewMissingFieldsError は必須項目の欠落エラーを生成する。
func NewMissingFieldsError() *APIError {
	return &APIError{Code: ErrCodeMissingFields, Message: "Missing fields"}
}

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{Code: ErrCodeValidation, Message: message}
}

// NewEmailExistsError はメールアドレス重複エラーを生成する。
func NewEmailExistsError() *APIError {
	return &APIError{Code: ErrCodeEmailExists, Message: "Email already exists"}
}

// NewInvalidLoginError はログイン失敗エラーを生成する。
// ユーザーの存在有無を推測されないよう、メッセージは常に同一にする。
func NewInvalidLoginError() *APIError {
	return &APIError{Code: ErrCodeInvalidCredentials, Message: "Invalid email or password"}
}

// NewEntryNotFoundError はエントリー未検出エラーを生成する。
func NewEntryNotFoundError() *APIError {
	return &APIError{Code: ErrCodeEntryNotFound, Message: "Entry not found"}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{Code: ErrCodeUserNotFound, Message: "User not found"}
}
