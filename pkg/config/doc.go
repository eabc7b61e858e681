/*
Package config loads the tracksync configuration file.

	            +-------------+
	            |   Config    |
	            | (Accounts)  |
	            +------+------+
	                   |
	      +------------+------------+
	      |            |            |
	+-----+----+ +-----+----+ +-----+----+
	|   YAML   | |   HCL    | |   JSON   |
	|  Parser  | |  Parser  | |  Parser  |
	+----------+ +----------+ +----------+

🎯 Purpose:
- Describes the storage accounts to sync and where their caches live
- Keeps every input format to the same rules

🔄 Flow:
1. Pick a parser by file extension
2. Decode strictly (unknown fields are errors)
3. Check the canonical JSON form against the embedded schema
4. Overlay TRACKSYNC_* environment variables
5. Validate cross-field rules and fill in defaults

🔍 Example:

	cache_dsn: sqlite:///var/lib/tracksync/cache.db
	parallelism: 2
	accounts:
	  - name: nas
	    provider: localfs
	    full_access: true
	    sync_root: /Activities
	    options:
	      root: /mnt/nas
	    ignore:
	      - "archive/**"
	  - name: gh
	    provider: github
	    token_env: GITHUB_TOKEN
	    format: gpx
	    options:
	      repo: me/activities
*/
package config
