package platforms

// Extraction scripts are opaque page-context programs. The orchestrator never
// inspects them; it only hands them to the browser engine and receives a flat
// record back. Swapping a script here is the whole upgrade path when a
// marketplace changes its markup.

// domScripts read the rendered DOM through selectors.
var domScripts = map[Platform]string{
	Alibaba: `() => {
		const text = (sel) => { const el = document.querySelector(sel); return el ? el.textContent.trim() : ''; };
		const imgs = Array.from(document.querySelectorAll('.main-image img, .detail-gallery img, img[data-role="thumb"]'))
			.map(i => i.src || i.getAttribute('data-src') || '').filter(Boolean);
		return {
			title: text('h1.product-title, h1[data-spm="product_title"], .product-title h1'),
			price: text('.product-price .price, .price-list .price, [data-spm="price"]').replace(/[^0-9.,-]/g, ''),
			description: text('.product-description, .do-overview'),
			images: Array.from(new Set(imgs)).slice(0, 20),
			supplier_domain: 'alibaba.com',
			url: location.href,
			scraped_at: new Date().toISOString()
		};
	}`,
	Aliexpress: `() => {
		const text = (sel) => { const el = document.querySelector(sel); return el ? el.textContent.trim() : ''; };
		const imgs = Array.from(document.querySelectorAll('.images-view-item img, [class*="slider"] img'))
			.map(i => i.src || '').filter(Boolean);
		return {
			title: text('h1[data-pl="product-title"], .product-title-text'),
			price: text('.product-price-value, [class*="price--current"]').replace(/[^0-9.,-]/g, ''),
			description: text('[data-pl="product-description"], .product-description'),
			images: Array.from(new Set(imgs)).slice(0, 20),
			supplier_domain: 'aliexpress.com',
			url: location.href,
			scraped_at: new Date().toISOString()
		};
	}`,
	Amazon: `() => {
		const text = (sel) => { const el = document.querySelector(sel); return el ? el.textContent.trim() : ''; };
		const imgs = Array.from(document.querySelectorAll('#altImages img, #imgTagWrapperId img'))
			.map(i => i.src || '').filter(Boolean);
		return {
			title: text('#productTitle'),
			price: text('.a-price .a-offscreen, #priceblock_ourprice').replace(/[^0-9.,-]/g, ''),
			description: text('#feature-bullets, #productDescription'),
			images: Array.from(new Set(imgs)).slice(0, 20),
			supplier_domain: 'amazon.com',
			url: location.href,
			scraped_at: new Date().toISOString()
		};
	}`,
}

// stateScripts read the JSON state the page embeds for its own scripts,
// which survives cosmetic markup changes. Used by the api_interception
// strategy.
var stateScripts = map[Platform]string{
	Alibaba: `() => {
		const state = window.__GLOBAL_DATA__ || window.runParams || {};
		const d = (state.data && state.data.productModule) || state.product || {};
		return {
			title: d.subject || d.title || '',
			price: String(d.price || (d.priceModule && d.priceModule.formatedPrice) || '').replace(/[^0-9.,-]/g, ''),
			description: d.description || '',
			images: (d.imageList || d.images || []).map(i => i.imageURL || i).filter(Boolean),
			supplier_domain: 'alibaba.com',
			url: location.href,
			scraped_at: new Date().toISOString()
		};
	}`,
	Aliexpress: `() => {
		const state = window.runParams && window.runParams.data || {};
		const t = state.titleModule || {}, p = state.priceModule || {}, img = state.imageModule || {};
		return {
			title: t.subject || '',
			price: String(p.formatedActivityPrice || p.formatedPrice || '').replace(/[^0-9.,-]/g, ''),
			description: (state.descriptionModule && state.descriptionModule.description) || '',
			images: (img.imagePathList || []).filter(Boolean),
			supplier_domain: 'aliexpress.com',
			url: location.href,
			scraped_at: new Date().toISOString()
		};
	}`,
	Amazon: `() => {
		const text = (sel) => { const el = document.querySelector(sel); return el ? el.textContent.trim() : ''; };
		let images = [];
		try {
			const m = document.body.innerHTML.match(/'colorImages':\s*({.+?}),\n/);
			if (m) { images = (JSON.parse(m[1].replace(/'/g, '"')).initial || []).map(i => i.large).filter(Boolean); }
		} catch (_) {}
		return {
			title: text('#productTitle'),
			price: text('.a-price .a-offscreen').replace(/[^0-9.,-]/g, ''),
			description: text('#productDescription'),
			images: images,
			supplier_domain: 'amazon.com',
			url: location.href,
			scraped_at: new Date().toISOString()
		};
	}`,
}

// ExtractionScript returns the page-context extraction program for a
// platform. When fromState is true the embedded-state variant is returned.
func ExtractionScript(p Platform, fromState bool) string {
	if fromState {
		if s, ok := stateScripts[p]; ok {
			return s
		}
	}
	return domScripts[p]
}
