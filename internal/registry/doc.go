// Package registry turns stored components into what readers and the
// install tooling consume.
//
// Info builds the component page: npm dependencies with their npm links,
// the copyable dependency block, the license and the registry components
// it builds on. Item builds the installable registry item served at
// /api/r/{username}/{slug}:
//
//	{
//	  "name": "button",
//	  "type": "registry:ui",
//	  "dependencies": ["clsx@^2.1.0"],
//	  "registryDependencies": ["https://example.com/api/r/ada/icon"],
//	  "files": [{"path": "button.tsx", "content": "...", "type": "registry:ui"}]
//	}
//
// Registry dependencies are references of the form "username/slug".
// InstallOrder resolves them transitively, dependencies first.
package registry
