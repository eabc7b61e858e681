// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

/*
Package provider defines the port every storage service adapter implements.

	            +-------------+
	            |  SyncCore   |
	            +------+------+
	                   |
	                   v
	            +-------------+
	            |    Port     |
	            +------+------+
	                   |
	      +------------+------------+
	      |                         |
	+-----+-----+             +-----+-----+
	|  localfs  |             |  github   |
	|  (afero)  |             | (git API) |
	+-----------+             +-----------+

🎯 Purpose:
- Hides the storage API behind enumerate / read / write / move
- Keeps the per-account structure cache current while enumerating
- Maps service failures onto syncerr kinds

🔄 Flow:
1. Client authenticates the account
2. Enumerate lists the sync root, using the structure cache to skip
   unchanged directories where the service allows it
3. Read and Write move raw bytes; revisions come back with them

⚡ Paths:
- FullPath is absolute on the service
- RelPath is FullPath minus the sync root and starts with "/"
- Sandbox prefixes ("/Apps/<app>") never show up in either

🔍 Example:

	factory, err := provider.Get("localfs")
	port, err := factory(ctx, store)

	client, err := port.Client(ctx, acct)
	for file, err := range port.Enumerate(ctx, acct, client, port.SyncRoot(acct), structure) {
		...
	}
*/
package provider
