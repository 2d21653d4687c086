// RestorationsData is a paginated response payload for the restoration history.
package dto

type RestorationsData struct {
	Restorations []RestorationInfo `json:"restorations"`
	ArchiveDir   string            `json:"archiveDir"`
	Length       int               `json:"length"`
	TotalPages   int               `json:"totalPages"`
	CurrentPage  int               `json:"currentPage"`
	Limit        int               `json:"pageSize"`
}
