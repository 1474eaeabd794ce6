package telegram

import (
	"context"
	"io"
	"net/http"

	"github.com/go-telegram/bot"
	"github.com/m-mizutani/goerr/v2"
)

// DownloadFile fetches a Telegram file by id, refusing anything larger than
// maxBytes. It returns the content and Telegram's file path.
func DownloadFile(ctx context.Context, api API, hc *http.Client, fileID string, maxBytes int64) ([]byte, string, error) {
	file, err := api.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to get file", goerr.V("file_id", fileID))
	}
	if maxBytes > 0 && file.FileSize > maxBytes {
		return nil, "", goerr.New("file too large", goerr.V("file_id", fileID), goerr.V("size", file.FileSize))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api.FileDownloadLink(file), nil)
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to create download request")
	}

	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to download file", goerr.V("file_id", fileID))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", goerr.New("unexpected download status", goerr.V("status", resp.StatusCode))
	}

	r := io.Reader(resp.Body)
	if maxBytes > 0 {
		r = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to read file data", goerr.V("file_id", fileID))
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, "", goerr.New("file too large", goerr.V("file_id", fileID))
	}
	return data, file.FilePath, nil
}
