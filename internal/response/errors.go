package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrInvalidKind    ErrCode = "INVALID_ATTEMPT_KIND"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound            ErrCode = "NOT_FOUND"
	ErrAssessmentNotFound  ErrCode = "ASSESSMENT_NOT_FOUND"
	ErrAttemptNotFound     ErrCode = "ATTEMPT_NOT_FOUND"
	ErrUnauthorizedAttempt ErrCode = "UNAUTHORIZED_ATTEMPT"

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	ErrNotEnrolled       ErrCode = "NOT_ENROLLED"
	ErrNoEligibleContent ErrCode = "NO_ELIGIBLE_CONTENT"
	ErrNoActiveAttempt   ErrCode = "NO_ACTIVE_ATTEMPT"
	ErrAttemptExpired    ErrCode = "ATTEMPT_EXPIRED"
	ErrAlreadySubmitted  ErrCode = "ALREADY_SUBMITTED"
	ErrTimeExceeded      ErrCode = "TIME_EXCEEDED"
	ErrStillInProgress   ErrCode = "STILL_IN_PROGRESS"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrTimeout  ErrCode = "REQUEST_TIMEOUT"
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrInvalidKind:
		return "Jenis tes harus PRE atau POST."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrAssessmentNotFound:
		return "Asesmen tidak ditemukan."
	case ErrAttemptNotFound:
		return "Percobaan tes tidak ditemukan."
	case ErrUnauthorizedAttempt:
		return "Percobaan tes ini milik pengguna lain."

	// ─── Attempt lifecycle ─────────────────────────────────────────────
	case ErrNotEnrolled:
		return "Anda belum terdaftar pada modul ini."
	case ErrNoEligibleContent:
		return "Asesmen ini belum memiliki soal."
	case ErrNoActiveAttempt:
		return "Tidak ada percobaan tes yang sedang berjalan."
	case ErrAttemptExpired:
		return "Waktu percobaan sebelumnya telah habis. Silakan mulai ulang."
	case ErrAlreadySubmitted:
		return "Jawaban untuk percobaan ini sudah dikumpulkan."
	case ErrTimeExceeded:
		return "Waktu pengerjaan telah habis."
	case ErrStillInProgress:
		return "Percobaan tes masih berlangsung."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrTimeout:
		return "Permintaan melebihi batas waktu."
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
