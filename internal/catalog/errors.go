package catalog

import "fmt"

// ThrottledError はリトライ上限までレート制限が解消しなかったことを表す。
// 一時的な失敗であり、呼び出し側での再試行が可能。
type ThrottledError struct {
	Attempts int
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("カタログサービスのレート制限が%d回の試行で解消しませんでした", e.Attempts)
}

// TransportError はカタログサービスへの到達自体に失敗したことを表す。
// ネットワークエラーとサーキットブレーカーのオープン状態を含む。
// ゲートウェイではリトライせず、呼び出し側に判断を委ねる。
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("カタログサービスに到達できませんでした: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError は2xx以外のHTTPステータスを受信したことを表す。
// 429はゲートウェイ内でリトライされるためここには現れない。
// 401はレーティング送信パスでのみセッション期限切れとして解釈される。
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("カタログサービスがステータス %d を返しました", e.StatusCode)
}

// IsSessionExpired はレーティング送信時のセッション期限切れ（401）かを返す。
func (e *StatusError) IsSessionExpired() bool {
	return e.StatusCode == 401
}
