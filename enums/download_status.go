package enums

type DownloadStatus string

const (
	DownloadStatusWaiting   DownloadStatus = "waiting"
	DownloadStatusInitiated DownloadStatus = "download_initiated"
	DownloadStatusComplete  DownloadStatus = "download_complete"
	DownloadStatusFailed    DownloadStatus = "download_failed"
)
