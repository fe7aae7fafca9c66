package mcpserver

// AssetFormatContract describes the asset records returned by the tools and
// which fields an LLM client may change.
const AssetFormatContract = `# mediabin Asset Format

Every catalogued asset is returned as JSON with this shape:

` + "```" + `json
{
  "id": "3f1c9a52-7a0e-4c55-9b57-5d2a1f0f7e11",
  "path": "/media/shoot/img%03d.png",
  "title": "img%03d.png",
  "tags": "beach summer",
  "media_type": "video",
  "metadata": {
    "has_video": true,
    "has_audio": false,
    "duration": 0.4,
    "fps": {"num": 25, "den": 1},
    "video_length": 10
  },
  "sequence": {
    "base_name": "img",
    "fixed_width": true,
    "digit_count": 3,
    "extension": "png",
    "folder_path": "/media/shoot"
  }
}
` + "```" + `

## Rules

1. ` + "`id`" + ` is assigned on import and never changes. Use it to address an asset.
2. ` + "`media_type`" + ` is one of video, audio or image. It is decided on import and cannot be edited.
3. Only ` + "`title`" + ` and ` + "`tags`" + ` are editable (tool ` + "`set_asset_field`" + `). Tags are free text.
4. ` + "`sequence`" + ` is present only for numbered image sequences collapsed into one asset;
   their ` + "`path`" + ` is a printf-style frame pattern and their media type is always video.
5. Importing a path that is already catalogued is a no-op counted as a duplicate.
`
