package apistrings

const (
	/// Session Related Strings
	SessionNotFound    = "unknown onboarding session, please restart onboarding"
	SessionDegraded    = "onboarding is temporarily offline, progress will not be saved"
	MissingClientRef   = "missing X-Client-Reference header"
	OutOfOrderStep     = "step submitted out of order, please continue from your current step"
	StepNotSaved       = "we could not confirm your progress was saved, please try again"
	VerificationNeeded = "verification is not complete for this action"

	/// Upload Related Strings
	MissingUpload       = "no file found in upload, please attach a file"
	UploadTooLarge      = "uploaded file exceeds the size limit"
	UploadFailed        = "could not store the uploaded file, please try again"
	UnsupportedFileType = "unsupported file type, use png, jpg, jpeg or pdf"

	/// Review Panel Strings
	IncorrectEmailPass  = "incorrect email or password"
	AdminNotFound       = "admin account no longer exists"
	ApplicationNotFound = "application does not exist"
	DecisionNotAllowed  = "application is not awaiting review"
	InvalidDecision     = "invalid decision, use 'approve' or 'reject'"
	InvalidListFilter   = "invalid status or risk level filter"

	/// Core Functionality Error
	ServerError = "a server error occurred, please try again later"
)
