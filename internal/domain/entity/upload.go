package entity

// UploadedImage is where an uploaded image can be fetched and how to delete it.
type UploadedImage struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}
